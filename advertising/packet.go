package advertising

import (
	"encoding/binary"
	"fmt"

	libdef "github.com/yohummus/yogi-framework-sub001/internal/defaults"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// packet is the fixed 25-byte advertising datagram: "YOGI\0" | major | minor
// | uuid[16] | tcp_port[2 BE] (spec §6).
type packet struct {
	uuid    libuid.UUID
	tcpPort uint16
}

func (p packet) encode() []byte {
	b := make([]byte, libdef.AdvertisingMessageSize)
	copy(b[0:5], libdef.AdvertisingMagic)
	b[5] = byte(libdef.VersionMajor)
	b[6] = byte(libdef.VersionMinor)
	copy(b[7:23], p.uuid.Bytes())
	binary.BigEndian.PutUint16(b[23:25], p.tcpPort)
	return b
}

func decodePacket(b []byte) (packet, error) {
	if len(b) != libdef.AdvertisingMessageSize {
		return packet{}, fmt.Errorf("advertising: datagram has %d bytes, want %d", len(b), libdef.AdvertisingMessageSize)
	}
	if string(b[0:5]) != libdef.AdvertisingMagic {
		return packet{}, fmt.Errorf("advertising: bad magic prefix")
	}
	if int(b[5]) != libdef.VersionMajor {
		return packet{}, fmt.Errorf("advertising: incompatible major version %d", b[5])
	}

	u, err := libuid.FromBytes(b[7:23])
	if err != nil {
		return packet{}, err
	}

	return packet{
		uuid:    u,
		tcpPort: binary.BigEndian.Uint16(b[23:25]),
	}, nil
}
