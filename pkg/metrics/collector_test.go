package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dfsshred/shredder/pkg/types"
)

type fakeStatusLister struct {
	byStatus map[types.MasterStatus][]string
}

func (f *fakeStatusLister) GetJobsByStatus(status types.MasterStatus) ([]string, error) {
	return f.byStatus[status], nil
}

func TestCollector_CollectSetsGaugePerStatus(t *testing.T) {
	lister := &fakeStatusLister{byStatus: map[types.MasterStatus][]string{
		types.Stage1Complete: {"job-a", "job-b"},
		types.Stage3Complete: {"job-c"},
	}}
	c := NewCollector(lister)

	c.collect()

	assert.Equal(t, float64(2), testutil.ToFloat64(JobsByStatus.WithLabelValues(string(types.Stage1Complete))))
	assert.Equal(t, float64(1), testutil.ToFloat64(JobsByStatus.WithLabelValues(string(types.Stage3Complete))))
	assert.Equal(t, float64(0), testutil.ToFloat64(JobsByStatus.WithLabelValues(string(types.StageInit))))
}
