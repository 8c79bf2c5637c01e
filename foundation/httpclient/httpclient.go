// Package httpclient provides basic http functions
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// RemoteFileInfo contains information
type RemoteFileInfo struct {
	ETag                  string
	LastModifiedTimestamp int64
	Path                  string
}

func getRemoteFileInfo(url string, resp *http.Response) RemoteFileInfo {
	result := RemoteFileInfo{
		Path: url,
	}
	result.ETag = resp.Header.Get("ETag")

	lastModifiedString := resp.Header.Get("Last-Modified")

	if len(lastModifiedString) > 0 {
		parsedTime, err := time.Parse(time.RFC1123, lastModifiedString)
		if err == nil {
			result.LastModifiedTimestamp = parsedTime.Unix()
		}
	}
	return result

}

// DownloadedFile contains information about a file that has been downloaded to the local file system
type DownloadedFile struct {
	RemoteFileInfo RemoteFileInfo
	LocalFilePath  string
	Size           int64
	DownloadedAt   time.Time
}

// StatusError is returned when the remote server answers with a non 2xx status
type StatusError struct {
	Url        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.Url, e.StatusCode)
}

// Retryable is false for 4xx responses other than 408 and 429, which will not change on a later attempt
func (e *StatusError) Retryable() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// DownloadRemoteFile retrieves a file from a url to a local file destination.
// On success returns information about the file in DownloadedFile
func DownloadRemoteFile(ctx context.Context, destinationFileName string, url string) (*DownloadedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Url: url, StatusCode: resp.StatusCode}
	}

	// Create the file
	out, err := os.Create(destinationFileName)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = out.Close()
	}()
	// Write the body to file
	bytesWritten, err := io.Copy(out, resp.Body)
	if err != nil {
		return nil, err
	}

	result := DownloadedFile{
		RemoteFileInfo: getRemoteFileInfo(url, resp),
		LocalFilePath:  destinationFileName,
		Size:           bytesWritten,
		DownloadedAt:   time.Now(),
	}
	return &result, nil
}
