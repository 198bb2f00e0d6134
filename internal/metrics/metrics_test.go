package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(CheckoutsTotal.WithLabelValues(ResultOK))
	RecordCheckout(ResultOK)
	assert.Equal(t, before+1, testutil.ToFloat64(CheckoutsTotal.WithLabelValues(ResultOK)))

	before = testutil.ToFloat64(SlotsCreatedTotal.WithLabelValues("pro"))
	RecordSlotsCreated("pro", 3)
	RecordSlotsCreated("pro", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(SlotsCreatedTotal.WithLabelValues("pro")))

	before = testutil.ToFloat64(SlotsExpiredTotal)
	RecordSlotsExpired(2)
	RecordSlotsExpired(-1)
	assert.Equal(t, before+2, testutil.ToFloat64(SlotsExpiredTotal))
}

func TestRecordHTTPRequest(t *testing.T) {
	c := HTTPRequestsTotal.WithLabelValues("/api/slots", "GET", "200")
	before := testutil.ToFloat64(c)
	RecordHTTPRequest("/api/slots", "GET", 200, 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	before = testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404"))
	RecordHTTPRequest("", "GET", 404, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404")))
}
