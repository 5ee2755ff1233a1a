package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/AimalShah/BarterDash-sub003/pkg/session"
)

var _ = Describe("SessionManager - Quality Monitoring", func() {
	var (
		mgr    *session.Manager
		config session.Config
		ctx    context.Context

		connectCalls    atomic.Int32
		disconnectCalls atomic.Int32
		pingRTT         atomic.Int64
		pingFailing     atomic.Bool

		eventMu   sync.Mutex
		qualities []session.ConnectionQuality
	)

	recordedQualities := func() []session.ConnectionQuality {
		eventMu.Lock()
		defer eventMu.Unlock()
		return append([]session.ConnectionQuality(nil), qualities...)
	}

	currentQuality := func() session.ConnectionQuality {
		return mgr.Stats().Quality
	}

	newOps := func(withPing bool) session.Ops {
		ops := session.Ops{
			Connect: func(ctx context.Context) error {
				connectCalls.Add(1)
				return nil
			},
			Disconnect: func(ctx context.Context) error {
				disconnectCalls.Add(1)
				return nil
			},
		}
		if withPing {
			ops.Ping = func(ctx context.Context) (time.Duration, error) {
				if pingFailing.Load() {
					return 0, errors.New("pong never arrived")
				}
				return time.Duration(pingRTT.Load()), nil
			}
		}
		return ops
	}

	BeforeEach(func() {
		ctx = context.Background()
		connectCalls.Store(0)
		disconnectCalls.Store(0)
		pingRTT.Store(int64(50 * time.Millisecond))
		pingFailing.Store(false)
		eventMu.Lock()
		qualities = nil
		eventMu.Unlock()

		config = session.TestConfig()
		config.Callbacks.OnQualityChange = func(quality session.ConnectionQuality) {
			eventMu.Lock()
			qualities = append(qualities, quality)
			eventMu.Unlock()
		}

		var err error
		mgr, err = session.NewManager(config, newOps(true), session.Signals{}, session.NewMetrics(), nil)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if mgr != nil {
			mgr.Destroy()
		}
	})

	Describe("Latency classification", func() {
		It("should walk through the quality tiers as latency degrades", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			Eventually(currentQuality, "1s").Should(Equal(session.QualityExcellent))

			pingRTT.Store(int64(250 * time.Millisecond))
			Eventually(currentQuality, "1s").Should(Equal(session.QualityGood))

			pingRTT.Store(int64(450 * time.Millisecond))
			Eventually(currentQuality, "1s").Should(Equal(session.QualityFair))

			pingRTT.Store(int64(800 * time.Millisecond))
			Eventually(currentQuality, "1s").Should(Equal(session.QualityPoor))

			Eventually(recordedQualities).Should(Equal([]session.ConnectionQuality{
				session.QualityExcellent,
				session.QualityGood,
				session.QualityFair,
				session.QualityPoor,
			}))
		})

		It("should publish a tier only when it changes", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			Eventually(currentQuality, "1s").Should(Equal(session.QualityExcellent))

			// Heartbeats keep sampling the same tier without re-publishing.
			Consistently(func() int {
				return len(recordedQualities())
			}, "300ms").Should(Equal(1))
		})

		It("should record the latest latency in the snapshot", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			Eventually(func() time.Duration {
				return mgr.Stats().LastLatency
			}, "1s").Should(Equal(50 * time.Millisecond))
		})

		It("should keep the last tier after a disconnect", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())
			Eventually(currentQuality, "1s").Should(Equal(session.QualityExcellent))

			mgr.Disconnect()
			Expect(currentQuality()).To(Equal(session.QualityExcellent))
		})
	})

	Describe("Heartbeat failure", func() {
		It("should tear down and reconnect automatically", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())
			Eventually(currentQuality, "1s").Should(Equal(session.QualityExcellent))

			pingFailing.Store(true)
			Eventually(func() string {
				if err := mgr.Stats().LastError; err != nil {
					return err.Error()
				}
				return ""
			}, "2s").Should(ContainSubstring("heartbeat failed"))

			pingFailing.Store(false)
			Eventually(mgr.IsConnected, "2s").Should(BeTrue())
			Expect(disconnectCalls.Load()).To(BeNumerically(">=", int32(1)))
			Expect(connectCalls.Load()).To(BeNumerically(">=", int32(2)))
		})
	})

	Describe("Without a ping operation", func() {
		It("should leave quality unknown", func() {
			plain, err := session.NewManager(config, newOps(false), session.Signals{}, nil, nil)
			Expect(err).ToNot(HaveOccurred())
			defer plain.Destroy()

			Expect(plain.Connect(ctx)).To(Succeed())

			Consistently(func() session.ConnectionQuality {
				return plain.Stats().Quality
			}, "300ms").Should(Equal(session.QualityUnknown))
			Expect(recordedQualities()).To(BeEmpty())
		})
	})
})
