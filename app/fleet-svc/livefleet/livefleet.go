package livefleet

import (
	"context"
	"errors"
	logger "log"
	"os"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/sourcegraph/conc"
)

// Conf contains all configurable parameters of the live fleet service
type Conf struct {
	RefreshEverySeconds int
	OverridePolicy      OverridePolicy
	Location            *time.Location
	HttpPort            int
	PatchSubject        string
	OverrideSubject     string
}

// ScheduleSource loads the schedule table. It is retried until it succeeds or the service shuts down
type ScheduleSource func(ctx context.Context) (*schedule.Table, error)

// StartServices brings up the schedule loader, synthesis loop, patch listener and web service.
// Returns after all of them have shut down following shutdownSignal
func StartServices(log *logger.Logger,
	conf Conf,
	synthesizer *fleet.Synthesizer,
	scheduleSource ScheduleSource,
	natsConn *nats.Conn,
	shutdownSignal chan os.Signal) error {

	publisher := makeNatsOverridePublicationDestination(natsConn, conf.OverrideSubject)
	liveFleet := makeLiveFleet(log, synthesizer, conf.OverridePolicy, publisher, conf.Location)

	//create shutdown channels
	loaderCtx, cancelLoader := context.WithCancel(context.Background())
	defer cancelLoader()
	synthesisLoopShutdown := make(chan bool, 1)
	patchListenerShutdown := make(chan bool, 1)
	webServiceShutdown := make(chan bool, 1)
	listenerFailed := make(chan error, 1)

	wg := conc.NewWaitGroup()
	wg.Go(func() {
		runScheduleLoader(loaderCtx, log, liveFleet, scheduleSource)
	})
	wg.Go(func() {
		runSynthesisLoop(log, liveFleet, time.Duration(conf.RefreshEverySeconds)*time.Second, synthesisLoopShutdown)
	})
	wg.Go(func() {
		if err := runPatchListener(log, natsConn, liveFleet, conf.PatchSubject, patchListenerShutdown); err != nil {
			listenerFailed <- err
		}
	})
	wg.Go(func() {
		runWebService(log, liveFleet, conf.HttpPort, webServiceShutdown)
	})

	var result error
	select {
	case <-shutdownSignal:
		log.Printf("Exiting on shutdown signal, shutting down subroutines")
	case result = <-listenerFailed:
		log.Printf("Patch listener failed, shutting down subroutines: %v", result)
	}
	cancelLoader()
	synthesisLoopShutdown <- true
	patchListenerShutdown <- true
	webServiceShutdown <- true
	wg.Wait()
	log.Printf("Subroutines shut down, exiting fleet service")
	return result
}

// runScheduleLoader loads the schedule table with exponential backoff, installs it and runs the first synthesis pass.
// Gives up when ctx is cancelled
func runScheduleLoader(ctx context.Context, log *logger.Logger, liveFleet *liveFleet, source ScheduleSource) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(0)), ctx)
	table, err := backoff.RetryNotifyWithData(func() (*schedule.Table, error) {
		return source(ctx)
	}, policy, func(err error, next time.Duration) {
		log.Printf("Unable to load schedule table, retrying in %v: %v", next, err)
	})
	if err != nil {
		log.Printf("Schedule loader stopped without a table: %v", err)
		return
	}
	if !liveFleet.synthesizer.SetTable(table) {
		log.Printf("Schedule table already loaded, ignoring new table")
		return
	}
	stats := table.Stats()
	log.Printf("Loaded schedule table with %d records, %d stops, %d routes and %d slots",
		stats.TotalRecords, stats.UniqueStops, stats.UniqueRoutes, stats.Slots)
	if _, err = liveFleet.refresh(liveFleet.now()); err != nil {
		log.Printf("Initial synthesis failed: %v", err)
	}
}

// runSynthesisLoop re-synthesizes the live vehicles every refreshEvery until shutdownSignal.
// Passes attempted before the schedule table is loaded are skipped.
func runSynthesisLoop(log *logger.Logger,
	liveFleet *liveFleet,
	refreshEvery time.Duration,
	shutdownSignal chan bool) {

	timer := time.NewTimer(refreshEvery)
	defer timer.Stop()
	for {
		select {
		case <-shutdownSignal:
			log.Printf("Exiting synthesis loop on shutdown signal")
			return
		case <-timer.C:
		}

		if _, err := liveFleet.refresh(liveFleet.now()); err != nil {
			if errors.Is(err, fleet.ErrNotReady) {
				log.Printf("Skipping synthesis, schedule table not loaded yet")
			} else {
				log.Printf("Synthesis failed: %v", err)
			}
		}
		timer.Reset(refreshEvery)
	}
}
