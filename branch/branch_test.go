package branch_test

import (
	"time"

	libbr "github.com/yohummus/yogi-framework-sub001/branch"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
	libtime "github.com/yohummus/yogi-framework-sub001/ytime"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Branch", func() {
	var (
		reactorA, reactorB *libreact.Context
		branchA, branchB   *libbr.Branch
	)

	newBranch := func(reactor *libreact.Context, name string) *libbr.Branch {
		cfg := libbr.DefaultConfig(name, "integration test branch", "itest-net")
		cfg.AdvertisingAddress = "239.255.7.7"
		cfg.AdvertisingPort = 44551
		cfg.AdvertisingInterfaces = []string{"localhost"}
		cfg.Info.AdvertisingIntvl = libtime.FromTime(50 * time.Millisecond)
		cfg.TCPListenAddr = "127.0.0.1:0"
		cfg.Password = "shared-secret"

		br, err := libbr.New(reactor, cfg, nil)
		Expect(err).ToNot(HaveOccurred())
		return br
	}

	BeforeEach(func() {
		reactorA = libreact.New()
		reactorA.RunInBackground()
		reactorB = libreact.New()
		reactorB.RunInBackground()

		branchA = newBranch(reactorA, "branch-a")
		branchB = newBranch(reactorB, "branch-b")
	})

	AfterEach(func() {
		branchA.Destroy()
		branchB.Destroy()
		reactorA.Stop()
		reactorB.Stop()
	})

	It("discovers the peer and establishes an ACTIVE session", func() {
		Eventually(func() int { return branchA.ActivePeerCount() }, 5*time.Second, 20*time.Millisecond).Should(Equal(1))
		Eventually(func() int { return branchB.ActivePeerCount() }, 5*time.Second, 20*time.Millisecond).Should(Equal(1))
	})

	It("delivers a broadcast sent from one branch to the other", func() {
		Eventually(func() int { return branchA.ActivePeerCount() }, 5*time.Second, 20*time.Millisecond).Should(Equal(1))
		Eventually(func() int { return branchB.ActivePeerCount() }, 5*time.Second, 20*time.Millisecond).Should(Equal(1))

		recvBuf := make([]byte, 256)
		received := make(chan string, 1)
		Expect(branchB.ReceiveBroadcast(libbr.EncodingJSON, recvBuf, func(n, trueLen int, from libuid.UUID, err error) {
			Expect(err).ToNot(HaveOccurred())
			received <- string(recvBuf[:n])
		})).ToNot(HaveOccurred())

		Expect(branchA.SendBroadcast(libbr.EncodingJSON, []byte(`{"hello":"world"}`), true)).ToNot(HaveOccurred())

		Eventually(received, 5*time.Second).Should(Receive(MatchJSON(`{"hello":"world"}`)))
	})
})
