package services_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/AimalShah/BarterDash-sub003/internal/services"
)

var _ = Describe("EventBus", func() {
	var bus *services.EventBus

	BeforeEach(func() {
		bus = services.NewEventBus()
	})

	Context("when subscribed to a single event type", func() {
		It("should deliver events of that type", func() {
			ch := bus.Subscribe(services.EventStateChanged, 4)

			bus.Publish(services.Event{
				Type: services.EventStateChanged,
				Data: map[string]interface{}{"state": "connected"},
			})

			var event services.Event
			Expect(ch).To(Receive(&event))
			Expect(event.Type).To(Equal(services.EventStateChanged))
			Expect(event.Data["state"]).To(Equal("connected"))
		})

		It("should not deliver events of other types", func() {
			ch := bus.Subscribe(services.EventStateChanged, 4)

			bus.Publish(services.Event{Type: services.EventBidReceived})

			Consistently(ch, "100ms").ShouldNot(Receive())
		})

		It("should drop events once the subscriber buffer is full", func() {
			ch := bus.Subscribe(services.EventStateChanged, 1)

			bus.Publish(services.Event{Type: services.EventStateChanged, Data: map[string]interface{}{"seq": 1}})
			bus.Publish(services.Event{Type: services.EventStateChanged, Data: map[string]interface{}{"seq": 2}})

			var event services.Event
			Expect(ch).To(Receive(&event))
			Expect(event.Data["seq"]).To(Equal(1))
			Expect(ch).NotTo(Receive())
		})
	})

	Context("when subscribed to all event types", func() {
		It("should deliver every published type in order", func() {
			ch := bus.SubscribeAll(8)

			bus.Publish(services.Event{Type: services.EventQualityChanged})
			bus.Publish(services.Event{Type: services.EventBidReceived})
			bus.Publish(services.Event{Type: services.EventNetworkChanged})

			received := make([]services.EventType, 0, 3)
			for i := 0; i < 3; i++ {
				var event services.Event
				Expect(ch).To(Receive(&event))
				received = append(received, event.Type)
			}

			Expect(received).To(Equal([]services.EventType{
				services.EventQualityChanged,
				services.EventBidReceived,
				services.EventNetworkChanged,
			}))
		})
	})

	Context("when unsubscribed", func() {
		It("should close the subscriber channel", func() {
			ch := bus.Subscribe(services.EventStateChanged, 1)

			bus.Unsubscribe(services.EventStateChanged, ch)
			bus.Publish(services.Event{Type: services.EventStateChanged})

			Expect(ch).To(BeClosed())
		})

		It("should detach an all-types subscriber from every type", func() {
			ch := bus.SubscribeAll(1)

			bus.Unsubscribe(services.EventStateChanged, ch)

			Expect(func() {
				bus.Publish(services.Event{Type: services.EventBidReceived})
			}).NotTo(Panic())
			Expect(ch).To(BeClosed())
		})
	})

	Context("when closed", func() {
		It("should close all subscriber channels", func() {
			stateCh := bus.Subscribe(services.EventStateChanged, 1)
			allCh := bus.SubscribeAll(1)

			bus.Close()

			Expect(stateCh).To(BeClosed())
			Expect(allCh).To(BeClosed())
		})

		It("should tolerate publishing after close", func() {
			bus.Subscribe(services.EventStateChanged, 1)
			bus.Close()

			Expect(func() {
				bus.Publish(services.Event{Type: services.EventStateChanged})
			}).NotTo(Panic())
		})
	})
})
