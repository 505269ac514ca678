package amqp

import (
	"encoding/json"
	"time"
)

// SeriesUpdatedMessage announces that the CPI series changed. It carries only
// the batch size and the newest covered month; consumers that need the data
// itself query the API.
type SeriesUpdatedMessage struct {
	Records      int       `json:"records"`
	ThroughYear  int       `json:"through_year"`
	ThroughMonth int       `json:"through_month"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewSeriesUpdatedMessage(records, throughYear, throughMonth int) *SeriesUpdatedMessage {
	return &SeriesUpdatedMessage{
		Records:      records,
		ThroughYear:  throughYear,
		ThroughMonth: throughMonth,
		Timestamp:    time.Now(),
	}
}

func (m *SeriesUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SeriesUpdatedMessageFromJSON(data []byte) (*SeriesUpdatedMessage, error) {
	var msg SeriesUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
