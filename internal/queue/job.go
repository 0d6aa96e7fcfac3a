package queue

import (
	"encoding/json"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rabbitmq/amqp091-go"
)

// RebuildJob asks the worker to rebuild the graph from a data directory.
// Zero thresholds mean the worker's configured defaults.
type RebuildJob struct {
	JobID               string    `json:"job_id"`
	DataDir             string    `json:"data_dir,omitempty"`
	RelevanceThreshold  float64   `json:"relevance_threshold,omitempty"`
	ResolutionThreshold float64   `json:"resolution_threshold,omitempty"`
	RequestedAt         time.Time `json:"requested_at"`
}

// PublishRebuild enqueues a rebuild job and returns its generated id.
func PublishRebuild(ch *amqp091.Channel, job RebuildJob) (string, error) {
	if job.JobID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return "", err
		}
		job.JobID = id
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	if err := PublishFIFO(ch, RebuildQueue, data); err != nil {
		return "", err
	}
	return job.JobID, nil
}

// ParseRebuildJob decodes a queued rebuild message.
func ParseRebuildJob(data []byte) (RebuildJob, error) {
	var job RebuildJob
	if err := json.Unmarshal(data, &job); err != nil {
		return RebuildJob{}, err
	}
	return job, nil
}
