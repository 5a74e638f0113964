package postgres

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"solana-holder-audit/internal/observability"
)

func TestTimed_RecordsQueryOutcome(t *testing.T) {
	durationsBefore := testutil.CollectAndCount(observability.DefaultMetrics.DBQueryDuration)
	errorsBefore := testutil.CollectAndCount(observability.DefaultMetrics.DBQueryErrors)

	err := func() (err error) {
		defer timed("test_op_ok", &err)()
		return nil
	}()
	assert.NoError(t, err)

	err = func() (err error) {
		defer timed("test_op_fail", &err)()
		return errors.New("boom")
	}()
	assert.Error(t, err)

	assert.Greater(t, testutil.CollectAndCount(observability.DefaultMetrics.DBQueryDuration), durationsBefore,
		"store calls must feed the query duration histogram")
	assert.Greater(t, testutil.CollectAndCount(observability.DefaultMetrics.DBQueryErrors), errorsBefore,
		"failed store calls must feed the query error counter")
}
