package session_test

import (
	"context"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/AimalShah/BarterDash-sub003/pkg/session"
	"github.com/AimalShah/BarterDash-sub003/pkg/signal"
)

var _ = Describe("SessionManager - Basic Operations", func() {
	var (
		mgr             *session.Manager
		config          session.Config
		ctx             context.Context
		connectCalls    atomic.Int32
		disconnectCalls atomic.Int32

		stateMu sync.Mutex
		states  []session.ConnectionState
	)

	recordedStates := func() []session.ConnectionState {
		stateMu.Lock()
		defer stateMu.Unlock()
		return append([]session.ConnectionState(nil), states...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		connectCalls.Store(0)
		disconnectCalls.Store(0)
		stateMu.Lock()
		states = nil
		stateMu.Unlock()

		config = session.TestConfig()
		config.Callbacks.OnStateChange = func(state session.ConnectionState) {
			stateMu.Lock()
			states = append(states, state)
			stateMu.Unlock()
		}

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

		var err error
		mgr, err = session.NewManager(config, ops, session.Signals{}, session.NewMetrics(), nil)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if mgr != nil {
			mgr.Destroy()
		}
	})

	Describe("Initial State", func() {
		It("should start disconnected with unknown quality", func() {
			Expect(mgr.State()).To(Equal(session.StateDisconnected))
			Expect(mgr.IsConnected()).To(BeFalse())

			stats := mgr.Stats()
			Expect(stats.Quality).To(Equal(session.QualityUnknown))
			Expect(stats.ReconnectAttempt).To(BeZero())
			Expect(stats.ConnectedAt.IsZero()).To(BeTrue())
			Expect(stats.LastError).ToNot(HaveOccurred())
		})

		It("should assign a session identity", func() {
			Expect(mgr.SessionID()).ToNot(Equal(uuid.Nil))
			Expect(mgr.Stats().SessionID).To(Equal(mgr.SessionID()))
		})
	})

	Describe("Connect", func() {
		It("should transition to Connected and invoke the operation once", func() {
			err := mgr.Connect(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(mgr.IsConnected()).To(BeTrue())
			Expect(connectCalls.Load()).To(Equal(int32(1)))

			stats := mgr.Stats()
			Expect(stats.ConnectedAt.IsZero()).To(BeFalse())
			Expect(stats.LastError).ToNot(HaveOccurred())
		})

		It("should be a no-op while already connected", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())
			Expect(mgr.Connect(ctx)).To(Succeed())
			Expect(connectCalls.Load()).To(Equal(int32(1)))
		})

		It("should publish state transitions in order", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			Eventually(recordedStates).Should(Equal([]session.ConnectionState{
				session.StateConnecting,
				session.StateConnected,
			}))
		})
	})

	Describe("Connect without network", func() {
		It("should go offline without starting the operation", func() {
			network := signal.NewVar(false)

			var calls atomic.Int32
			ops := session.Ops{
				Connect: func(ctx context.Context) error {
					calls.Add(1)
					return nil
				},
				Disconnect: func(ctx context.Context) error { return nil },
			}

			offline, err := session.NewManager(session.TestConfig(), ops,
				session.Signals{Network: network}, nil, nil)
			Expect(err).ToNot(HaveOccurred())
			defer offline.Destroy()

			err = offline.Connect(ctx)
			Expect(err).To(MatchError(session.ErrNetworkUnavailable))
			Expect(offline.State()).To(Equal(session.StateOffline))
			Expect(calls.Load()).To(BeZero())

			stats := offline.Stats()
			Expect(stats.LastError).To(MatchError(session.ErrNetworkUnavailable))
			Expect(stats.NetworkAvailable).To(BeFalse())
		})
	})

	Describe("Disconnect", func() {
		It("should tear the session down through the operation", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			mgr.Disconnect()
			Expect(mgr.State()).To(Equal(session.StateDisconnected))
			Expect(mgr.IsConnected()).To(BeFalse())
			Expect(disconnectCalls.Load()).To(Equal(int32(1)))
		})

		It("should be idempotent", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			mgr.Disconnect()
			mgr.Disconnect()
			Expect(disconnectCalls.Load()).To(Equal(int32(1)))
		})

		It("should not invoke the operation when never connected", func() {
			mgr.Disconnect()
			Expect(mgr.State()).To(Equal(session.StateDisconnected))
			Expect(disconnectCalls.Load()).To(BeZero())
		})
	})

	Describe("Destroy", func() {
		It("should reject further operations", func() {
			mgr.Destroy()

			Expect(mgr.Connect(ctx)).To(MatchError(session.ErrManagerClosed))
			Expect(mgr.Reconnect(ctx)).To(MatchError(session.ErrManagerClosed))
		})

		It("should be idempotent", func() {
			mgr.Destroy()
			mgr.Destroy()
			Expect(mgr.State()).To(Equal(session.StateDisconnected))
		})

		It("should tear down an established session", func() {
			Expect(mgr.Connect(ctx)).To(Succeed())

			mgr.Destroy()
			Expect(disconnectCalls.Load()).To(Equal(int32(1)))
			Expect(mgr.State()).To(Equal(session.StateDisconnected))
		})
	})

	Describe("Construction", func() {
		It("should require both operations", func() {
			_, err := session.NewManager(session.TestConfig(), session.Ops{
				Connect: func(ctx context.Context) error { return nil },
			}, session.Signals{}, nil, nil)
			Expect(err).To(HaveOccurred())

			_, err = session.NewManager(session.TestConfig(), session.Ops{
				Disconnect: func(ctx context.Context) error { return nil },
			}, session.Signals{}, nil, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid configuration", func() {
			bad := session.TestConfig()
			bad.MaxReconnectAttempts = -1

			_, err := session.NewManager(bad, session.Ops{
				Connect:    func(ctx context.Context) error { return nil },
				Disconnect: func(ctx context.Context) error { return nil },
			}, session.Signals{}, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Callback reentrancy", func() {
		It("should allow listeners to query the manager", func() {
			var observed atomic.Int32
			reentrant := session.TestConfig()
			reentrant.Callbacks.OnStateChange = func(state session.ConnectionState) {
				if state == session.StateConnected {
					observed.Store(int32(mgr.Stats().ReconnectAttempt + 1))
				}
			}

			var err error
			mgr.Destroy()
			mgr, err = session.NewManager(reentrant, session.Ops{
				Connect:    func(ctx context.Context) error { return nil },
				Disconnect: func(ctx context.Context) error { return nil },
			}, session.Signals{}, nil, nil)
			Expect(err).ToNot(HaveOccurred())

			Expect(mgr.Connect(ctx)).To(Succeed())
			Eventually(func() int32 { return observed.Load() }).Should(Equal(int32(1)))
		})
	})

	Describe("Panicking operations", func() {
		It("should convert a connect panic into an error", func() {
			var err error
			mgr.Destroy()

			cfg := session.TestConfig()
			cfg.EnableAutoReconnect = false
			mgr, err = session.NewManager(cfg, session.Ops{
				Connect:    func(ctx context.Context) error { panic("boom") },
				Disconnect: func(ctx context.Context) error { return nil },
			}, session.Signals{}, nil, nil)
			Expect(err).ToNot(HaveOccurred())

			err = mgr.Connect(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("panic"))
			Expect(mgr.State()).To(Equal(session.StateError))
		})
	})

	It("should keep a connected session alive", func() {
		Expect(mgr.Connect(ctx)).To(Succeed())

		Consistently(mgr.IsConnected, "200ms").Should(BeTrue())
		Expect(connectCalls.Load()).To(Equal(int32(1)))
	})
})
