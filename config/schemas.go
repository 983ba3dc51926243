package config

// resourceSchemas holds the JSON-Schema draft-07 documents spec §6 names as
// resources. Each mirrors the property constraints spec §6 calls out
// (queue-size bounds, port range, millisecond-or-null durations, the path
// pattern) well enough to reject malformed branch configuration without
// pretending to be the full upstream schema set.
var resourceSchemas = map[string]string{
	"branch_config": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"network_name": {"type": "string"},
			"password": {"type": "string"},
			"path": {"type": "string", "pattern": "^/.+$"},
			"advertising_interfaces": {"type": "array", "items": {"type": "string"}},
			"advertising_address": {"type": "string"},
			"advertising_port": {"type": "integer", "minimum": 1, "maximum": 65535},
			"advertising_interval": {"type": ["number", "null"], "minimum": 1},
			"timeout": {"type": ["number", "null"], "minimum": 1},
			"ghost_mode": {"type": "boolean"},
			"tx_queue_size": {"type": "integer", "minimum": 35000, "maximum": 10000000},
			"rx_queue_size": {"type": "integer", "minimum": 35000, "maximum": 10000000}
		},
		"required": ["name", "network_name"]
	}`,

	"branch_properties": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"uuid": {"type": "string"},
			"name": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"network_name": {"type": "string"},
			"path": {"type": "string", "pattern": "^/.+$"},
			"hostname": {"type": "string"},
			"pid": {"type": "integer", "minimum": 0},
			"start_time": {"type": "string"},
			"timeout": {"type": ["number", "null"], "minimum": 1},
			"advertising_interval": {"type": ["number", "null"], "minimum": 1},
			"ghost_mode": {"type": "boolean"}
		},
		"required": ["uuid", "name", "network_name", "path"]
	}`,

	"local_branch_info": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"uuid": {"type": "string"},
			"name": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"network_name": {"type": "string"},
			"path": {"type": "string", "pattern": "^/.+$"},
			"hostname": {"type": "string"},
			"pid": {"type": "integer", "minimum": 0},
			"advertising_interfaces": {"type": "array", "items": {"type": "string"}},
			"advertising_address": {"type": "string"},
			"advertising_port": {"type": "integer", "minimum": 1, "maximum": 65535},
			"advertising_interval": {"type": ["number", "null"], "minimum": 1},
			"tcp_server_port": {"type": "integer", "minimum": 0, "maximum": 65535},
			"tx_queue_size": {"type": "integer", "minimum": 35000, "maximum": 10000000},
			"rx_queue_size": {"type": "integer", "minimum": 35000, "maximum": 10000000}
		},
		"required": ["uuid", "name", "network_name", "path"]
	}`,

	"remote_branch_info": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"uuid": {"type": "string"},
			"name": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"network_name": {"type": "string"},
			"path": {"type": "string", "pattern": "^/.+$"},
			"hostname": {"type": "string"},
			"pid": {"type": "integer", "minimum": 0},
			"tcp_server_address": {"type": "string"},
			"tcp_server_port": {"type": "integer", "minimum": 0, "maximum": 65535},
			"timeout": {"type": ["number", "null"], "minimum": 1},
			"advertising_interval": {"type": ["number", "null"], "minimum": 1},
			"ghost_mode": {"type": "boolean"}
		},
		"required": ["uuid", "name", "network_name", "path"]
	}`,

	"branch_event": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"uuid": {"type": "string"},
			"tcp_server_address": {"type": "string"},
			"tcp_server_port": {"type": "integer", "minimum": 0, "maximum": 65535},
			"ev_res": {"type": "integer"}
		},
		"required": ["uuid"]
	}`,
}
