package config_test

import (
	libcfg "github.com/yohummus/yogi-framework-sub001/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Variable substitution", func() {
	It("replaces ${name} with the resolved content of /variables/name", func() {
		doc := libcfg.NewDocument(false)
		doc.SetVariable("host", "example.org")
		Expect(doc.MergeJSON([]byte(`{"branch":{"network":"net-${host}"}}`))).To(Succeed())

		val, err := doc.GetJSON("/branch/network")
		Expect(err).ToNot(HaveOccurred())
		Expect(val).To(Equal("net-example.org"))
	})

	It("raises an error for an unresolved variable reference", func() {
		doc := libcfg.NewDocument(false)
		Expect(doc.MergeJSON([]byte(`{"x":"${missing}"}`))).To(Succeed())
		_, err := doc.GetJSON("/x")
		Expect(err).To(HaveOccurred())
	})

	It("raises an error when a key contains variable syntax", func() {
		doc := libcfg.NewDocument(false)
		Expect(doc.MergeJSON([]byte(`{"${bad}":"v"}`))).To(Succeed())
		_, err := doc.GetJSON("/")
		Expect(err).To(HaveOccurred())
	})

	It("detects a circular variable reference", func() {
		doc := libcfg.NewDocument(false)
		doc.SetVariable("a", "${b}")
		doc.SetVariable("b", "${a}")
		Expect(doc.MergeJSON([]byte(`{"x":"${a}"}`))).To(Succeed())

		_, err := doc.GetJSON("/x")
		Expect(err).To(HaveOccurred())
	})

	It("leaves ${...} text untouched once substitution is disabled", func() {
		doc := libcfg.NewDocument(false)
		doc.DisableVariableSubstitution()
		Expect(doc.MergeJSON([]byte(`{"x":"${missing}"}`))).To(Succeed())

		val, err := doc.GetJSON("/x")
		Expect(err).ToNot(HaveOccurred())
		Expect(val).To(Equal("${missing}"))
	})
})
