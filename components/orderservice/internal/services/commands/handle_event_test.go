package commands

import (
	"testing"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

func TestCommandTopicForRoutesKnownEvents(t *testing.T) {
	cases := []struct {
		eventType string
		want      string
	}{
		{mmodel.EventPaymentAuthorized, mmodel.TopicPaymentEvents},
		{mmodel.EventPaymentVoid, mmodel.TopicPaymentEvents},
		{mmodel.EventPaymentCaptured, mmodel.TopicPaymentEvents},
		{mmodel.EventInventoryReserved, mmodel.TopicInventoryEvents},
		{mmodel.EventInventoryRelease, mmodel.TopicInventoryEvents},
		{mmodel.EventOrderCompleted, mmodel.TopicOrderEvents},
		{mmodel.EventOrderFailed, mmodel.TopicOrderEvents},
	}

	for _, c := range cases {
		if got := TopicForEventType(c.eventType); got != c.want {
			t.Errorf("TopicForEventType(%s) = %q, want %q", c.eventType, got, c.want)
		}
	}
}
