package model

import "time"

// CronLog records one execution of a scheduled job: which job ran, what it
// reported and when it started and finished.
type CronLog struct {
	Base
	JobKey    string
	Output    string
	StartedAt time.Time
	EndedAt   time.Time
}

// CronLogMeta describes the cron execution log entity.
var CronLogMeta = Register(&Metadata{
	Name:       "cron_log",
	Table:      "cron_logs",
	Timestamps: true,
	Fields: []Field{
		StringField("job_key", func(e Entity) *string { return &e.(*CronLog).JobKey }),
		StringField("output", func(e Entity) *string { return &e.(*CronLog).Output }),
		TimeField("started_at", func(e Entity) *time.Time { return &e.(*CronLog).StartedAt }),
		TimeField("ended_at", func(e Entity) *time.Time { return &e.(*CronLog).EndedAt }),
	},
	Filterable: []string{"job_key"},
	Orderable:  []string{"id", "started_at", "created_at"},
	New:        func() Entity { return &CronLog{} },
})

// Meta implements Entity.
func (c *CronLog) Meta() *Metadata { return CronLogMeta }
