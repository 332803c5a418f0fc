package metrics

import (
	"time"

	"github.com/dfsshred/shredder/pkg/types"
)

// statusLister is the subset of jobstore.Store the collector depends
// on; satisfied by *jobstore.Store. Declared locally to avoid an
// import cycle (jobstore does not, and should not, depend on metrics).
type statusLister interface {
	GetJobsByStatus(status types.MasterStatus) ([]string, error)
}

// allMasterStatuses is the closed set of master status tokens polled
// each collection cycle (spec §3).
var allMasterStatuses = []types.MasterStatus{
	types.StageInit,
	types.StageIngest,
	types.StageIngestComplete,
	types.Stage1Complete,
	types.StagePrepareBlocklist,
	types.StageCopyBlocks,
	types.StageLeaderActive,
	types.StageReadyForDelete,
	types.StageFilesDeleted,
	types.Stage2Complete,
	types.Stage3Shredding,
	types.Stage3Complete,
}

// Collector periodically polls the job store to populate
// shredder_jobs_by_status, giving operators a live view of how many
// jobs sit at each stage without scraping every job record by hand.
type Collector struct {
	store  statusLister
	stopCh chan struct{}
}

// NewCollector returns a Collector that polls store.
func NewCollector(store statusLister) *Collector {
	return &Collector{store: store, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, status := range allMasterStatuses {
		jobs, err := c.store.GetJobsByStatus(status)
		if err != nil {
			continue
		}
		JobsByStatus.WithLabelValues(string(status)).Set(float64(len(jobs)))
	}
}
