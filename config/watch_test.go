package config_test

import (
	"os"
	"path/filepath"
	"time"

	libcfg "github.com/yohummus/yogi-framework-sub001/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Watch", func() {
	It("reloads the document when a watched file changes", func() {
		dir, err := os.MkdirTemp("", "yogi-config-watch")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "branch.json")
		Expect(os.WriteFile(path, []byte(`{"branch":{"name":"a"}}`), 0o644)).To(Succeed())

		doc := libcfg.NewDocument(false)
		Expect(doc.MergeFiles([]string{path})).To(Succeed())

		reloaded := make(chan error, 4)
		w, err := libcfg.Watch(doc, []string{path}, func(err error) { reloaded <- err })
		Expect(err).ToNot(HaveOccurred())
		defer w.Stop()

		Expect(os.WriteFile(path, []byte(`{"branch":{"name":"b"}}`), 0o644)).To(Succeed())

		Eventually(func() interface{} {
			val, _ := doc.GetJSON("/branch/name")
			return val
		}, 3*time.Second, 20*time.Millisecond).Should(Equal("b"))

		var lastErr error
		Eventually(reloaded, 3*time.Second).Should(Receive(&lastErr))
		Expect(lastErr).ToNot(HaveOccurred())
	})
})
