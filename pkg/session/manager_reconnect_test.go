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
	"github.com/AimalShah/BarterDash-sub003/pkg/signal"
)

var errDialRefused = errors.New("dial refused")

var _ = Describe("SessionManager - Reconnection", func() {
	var (
		mgr        *session.Manager
		config     session.Config
		ctx        context.Context
		network    *signal.Var
		foreground *signal.Var

		connectCalls    atomic.Int32
		disconnectCalls atomic.Int32
		failFirst       atomic.Int32
		connectOverride func(ctx context.Context) error

		eventMu  sync.Mutex
		attempts []int
		errSeen  []error
	)

	recordedAttempts := func() []int {
		eventMu.Lock()
		defer eventMu.Unlock()
		return append([]int(nil), attempts...)
	}

	countErrors := func(target error) func() int {
		return func() int {
			eventMu.Lock()
			defer eventMu.Unlock()
			n := 0
			for _, err := range errSeen {
				if errors.Is(err, target) {
					n++
				}
			}
			return n
		}
	}

	start := func() {
		var err error
		mgr, err = session.NewManager(config, session.Ops{
			Connect: func(ctx context.Context) error {
				n := connectCalls.Add(1)
				if connectOverride != nil {
					return connectOverride(ctx)
				}
				if n <= failFirst.Load() {
					return errDialRefused
				}
				return nil
			},
			Disconnect: func(ctx context.Context) error {
				disconnectCalls.Add(1)
				return nil
			},
		}, session.Signals{Network: network, Foreground: foreground}, session.NewMetrics(), nil)
		Expect(err).ToNot(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		network = signal.NewVar(true)
		foreground = signal.NewVar(true)
		connectCalls.Store(0)
		disconnectCalls.Store(0)
		failFirst.Store(0)
		connectOverride = nil
		eventMu.Lock()
		attempts = nil
		errSeen = nil
		eventMu.Unlock()

		config = session.TestConfig()
		config.Callbacks.OnReconnect = func(attempt int) {
			eventMu.Lock()
			attempts = append(attempts, attempt)
			eventMu.Unlock()
		}
		config.Callbacks.OnError = func(err error) {
			eventMu.Lock()
			errSeen = append(errSeen, err)
			eventMu.Unlock()
		}
	})

	AfterEach(func() {
		if mgr != nil {
			mgr.Destroy()
		}
	})

	Context("when early attempts fail and a later one succeeds", func() {
		It("should retry with incrementing attempt numbers until connected", func() {
			failFirst.Store(2)
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))

			Eventually(mgr.IsConnected, "2s").Should(BeTrue())
			Expect(connectCalls.Load()).To(Equal(int32(3)))
			Eventually(recordedAttempts).Should(Equal([]int{1, 2}))
			Expect(mgr.Stats().ReconnectAttempt).To(BeZero())
		})

		It("should reset the attempt counter for the next outage", func() {
			failFirst.Store(2)
			start()

			_ = mgr.Connect(ctx)
			Eventually(mgr.IsConnected, "2s").Should(BeTrue())

			network.Set(false)
			Eventually(mgr.State).Should(Equal(session.StateOffline))

			network.Set(true)
			Eventually(mgr.IsConnected, "2s").Should(BeTrue())

			// The second outage starts counting from one again.
			Eventually(recordedAttempts).Should(Equal([]int{1, 2, 1}))
		})
	})

	Context("when every attempt fails", func() {
		BeforeEach(func() {
			config.MaxReconnectAttempts = 2
			failFirst.Store(1 << 30)
		})

		It("should stop after the retry budget and report it once", func() {
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))

			Eventually(func() error {
				return mgr.Stats().LastError
			}, "2s").Should(MatchError(session.ErrMaxAttemptsReached))
			Expect(mgr.State()).To(Equal(session.StateError))

			Eventually(countErrors(session.ErrMaxAttemptsReached)).Should(Equal(1))
			Consistently(countErrors(session.ErrMaxAttemptsReached), "300ms").Should(Equal(1))

			// Initial attempt plus the two budgeted retries, then nothing.
			Expect(connectCalls.Load()).To(Equal(int32(3)))
			Consistently(func() int32 { return connectCalls.Load() }, "300ms").Should(Equal(int32(3)))
			Expect(recordedAttempts()).To(Equal([]int{1, 2}))
		})

		It("should recover through a manual Reconnect", func() {
			start()

			_ = mgr.Connect(ctx)
			Eventually(func() error {
				return mgr.Stats().LastError
			}, "2s").Should(MatchError(session.ErrMaxAttemptsReached))

			failFirst.Store(0)
			Expect(mgr.Reconnect(ctx)).To(Succeed())
			Expect(mgr.IsConnected()).To(BeTrue())
			Expect(mgr.Stats().ReconnectAttempt).To(BeZero())
		})

		It("should recover when the network is restored", func() {
			start()

			_ = mgr.Connect(ctx)
			Eventually(func() error {
				return mgr.Stats().LastError
			}, "2s").Should(MatchError(session.ErrMaxAttemptsReached))

			failFirst.Store(0)
			network.Set(false)
			network.Set(true)

			Eventually(mgr.IsConnected, "2s").Should(BeTrue())
		})
	})

	Context("when the connect operation never settles", func() {
		It("should time out after the configured window", func() {
			config.EnableAutoReconnect = false
			connectOverride = func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}
			start()

			began := time.Now()
			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(session.ErrConnectTimeout))
			Expect(time.Since(began)).To(BeNumerically(">=", config.ConnectTimeout))
			Expect(mgr.State()).To(Equal(session.StateError))
		})
	})

	Context("when the application is backgrounded", func() {
		It("should defer the retry until foreground returns", func() {
			foreground.Set(false)
			failFirst.Store(1)
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))

			Consistently(func() int32 { return connectCalls.Load() }, "300ms").Should(Equal(int32(1)))
			Expect(mgr.State()).To(Equal(session.StateError))

			foreground.Set(true)
			Eventually(mgr.IsConnected, "2s").Should(BeTrue())
			Expect(recordedAttempts()).To(Equal([]int{1}))
		})

		It("should park a due retry and resume on foreground return", func() {
			config.BaseReconnectDelay = 200 * time.Millisecond
			config.MaxReconnectDelay = 200 * time.Millisecond
			failFirst.Store(1)
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))
			foreground.Set(false)

			// The timer fires while backgrounded and must not dial.
			Consistently(func() int32 { return connectCalls.Load() }, "400ms").Should(Equal(int32(1)))
			Expect(mgr.State()).To(Equal(session.StateReconnecting))

			foreground.Set(true)
			Eventually(mgr.IsConnected, "1s").Should(BeTrue())
			Expect(connectCalls.Load()).To(Equal(int32(2)))
		})
	})

	Context("when auto reconnect is disabled", func() {
		It("should stay in the error state without retrying", func() {
			config.EnableAutoReconnect = false
			failFirst.Store(1 << 30)
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))

			Consistently(func() int32 { return connectCalls.Load() }, "300ms").Should(Equal(int32(1)))
			Expect(mgr.State()).To(Equal(session.StateError))
			Expect(recordedAttempts()).To(BeEmpty())
		})
	})

	Context("when the network drops while connected", func() {
		It("should go offline and hold until restore", func() {
			start()

			Expect(mgr.Connect(ctx)).To(Succeed())

			network.Set(false)
			Eventually(mgr.State).Should(Equal(session.StateOffline))
			Consistently(func() int32 { return connectCalls.Load() }, "300ms").Should(Equal(int32(1)))

			network.Set(true)
			Eventually(mgr.IsConnected, "2s").Should(BeTrue())
			Expect(connectCalls.Load()).To(Equal(int32(2)))
		})
	})

	Context("when a manual call arrives during a retry wait", func() {
		It("should let Connect supersede the pending timer", func() {
			config.BaseReconnectDelay = 2 * time.Second
			config.MaxReconnectDelay = 2 * time.Second
			failFirst.Store(1)
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))
			Expect(mgr.State()).To(Equal(session.StateReconnecting))

			Expect(mgr.Connect(ctx)).To(Succeed())
			Expect(mgr.IsConnected()).To(BeTrue())

			Consistently(func() int32 { return connectCalls.Load() }, "300ms").Should(Equal(int32(2)))
		})

		It("should let Disconnect cancel the pending timer", func() {
			failFirst.Store(1 << 30)
			start()

			err := mgr.Connect(ctx)
			Expect(err).To(MatchError(errDialRefused))

			mgr.Disconnect()
			Expect(mgr.State()).To(Equal(session.StateDisconnected))

			calls := connectCalls.Load()
			Consistently(func() int32 { return connectCalls.Load() }, "300ms").Should(Equal(calls))
		})
	})
})
