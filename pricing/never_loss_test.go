package pricing_test

import (
	"testing"

	"github.com/amirphl/faredown-pricing/pricing"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/stretchr/testify/assert"
)

func TestApplyNeverLoss(t *testing.T) {
	tests := []struct {
		name          string
		net           string
		afterBargain  string
		margin        string
		wantFinal     string
		wantTriggered bool
	}{
		{name: "above floor", net: "10000", afterBargain: "10500", margin: "200", wantFinal: "10500"},
		{name: "exactly floor", net: "10000", afterBargain: "10200", margin: "200", wantFinal: "10200"},
		{name: "below floor", net: "10000", afterBargain: "9900", margin: "200", wantFinal: "10200", wantTriggered: true},
		{name: "zero margin", net: "10000", afterBargain: "9999.99", margin: "0", wantFinal: "10000", wantTriggered: true},
		{name: "negative margin treated as zero", net: "500", afterBargain: "450", margin: "-20", wantFinal: "500", wantTriggered: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := pricing.ApplyNeverLoss(testingutil.Dec(tt.net), testingutil.Dec(tt.afterBargain), testingutil.Dec(tt.margin))
			assert.True(t, out.FinalPayable.Equal(testingutil.Dec(tt.wantFinal)), out.FinalPayable.String())
			assert.Equal(t, tt.wantTriggered, out.Triggered)
			assert.False(t, out.FinalPayable.LessThan(testingutil.Dec(tt.net)))
		})
	}
}
