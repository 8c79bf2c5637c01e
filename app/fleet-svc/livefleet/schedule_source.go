package livefleet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	logger "log"
	"os"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"github.com/OpenTransitTools/crowdcast/foundation/httpclient"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
)

// CSVScheduleSource loads the schedule table from a local csv file.
// A missing file is retried, a malformed one is not.
func CSVScheduleSource(path string) ScheduleSource {
	return func(_ context.Context) (*schedule.Table, error) {
		table, err := schedule.LoadCSVFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return table, nil
	}
}

// URLScheduleSource downloads the schedule csv from url into workDir and loads it.
// Transport failures and 5xx responses are retried, client errors and malformed files are not.
func URLScheduleSource(log *logger.Logger, url string, workDir string) ScheduleSource {
	return func(ctx context.Context) (*schedule.Table, error) {
		tmpFile, err := os.CreateTemp(workDir, "schedule-*.csv")
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("creating schedule download file: %w", err))
		}
		tmpPath := tmpFile.Name()
		_ = tmpFile.Close()
		defer func() {
			_ = os.Remove(tmpPath)
		}()

		downloaded, err := httpclient.DownloadRemoteFile(ctx, tmpPath, url)
		if err != nil {
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return nil, backoff.Permanent(err)
			}
			return nil, fmt.Errorf("downloading schedule: %w", err)
		}
		logDownloadedSchedule(log, downloaded)
		table, err := schedule.LoadCSVFile(tmpPath)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("schedule from %s: %w", url, err))
		}
		return table, nil
	}
}

// logDownloadedSchedule records which version of the remote schedule was fetched
func logDownloadedSchedule(log *logger.Logger, downloaded *httpclient.DownloadedFile) {
	info := downloaded.RemoteFileInfo
	lastModified := "unknown"
	if info.LastModifiedTimestamp > 0 {
		lastModified = time.Unix(info.LastModifiedTimestamp, 0).UTC().Format(time.RFC3339)
	}
	log.Printf("Downloaded schedule %s, %d bytes, etag:%q last modified:%s", info.Path, downloaded.Size,
		info.ETag, lastModified)
}

// DBScheduleSource loads the schedule table from the schedule_prediction table
func DBScheduleSource(db *sqlx.DB) ScheduleSource {
	return func(_ context.Context) (*schedule.Table, error) {
		return schedule.LoadTable(db)
	}
}
