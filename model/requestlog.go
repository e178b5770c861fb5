package model

// RequestLog records one inbound HTTP request. Rows are written best effort
// by the request logging middleware; a failed write never fails the request.
type RequestLog struct {
	Base
	Method    string
	URI       string
	IP        string
	UserAgent string
}

// RequestLogMeta describes the request log entity.
var RequestLogMeta = Register(&Metadata{
	Name:       "request_log",
	Table:      "request_logs",
	Timestamps: true,
	Fields: []Field{
		StringField("method", func(e Entity) *string { return &e.(*RequestLog).Method }),
		StringField("uri", func(e Entity) *string { return &e.(*RequestLog).URI }),
		StringField("ip", func(e Entity) *string { return &e.(*RequestLog).IP }),
		StringField("user_agent", func(e Entity) *string { return &e.(*RequestLog).UserAgent }),
	},
	Filterable: []string{"method", "ip"},
	Orderable:  []string{"id", "created_at"},
	New:        func() Entity { return &RequestLog{} },
})

// Meta implements Entity.
func (r *RequestLog) Meta() *Metadata { return RequestLogMeta }

// UserRequestLog links an authenticated user to a logged request. It is a
// pure link table.
type UserRequestLog struct {
	Base
	UserID       int64
	RequestLogID int64
}

// UserRequestLogMeta describes the user to request log link.
var UserRequestLogMeta = Register(&Metadata{
	Name:       "user_request_log",
	Table:      "user_request_logs",
	Timestamps: true,
	Fields: []Field{
		IntField("user_id", func(e Entity) *int64 { return &e.(*UserRequestLog).UserID }),
		IntField("request_log_id", func(e Entity) *int64 { return &e.(*UserRequestLog).RequestLogID }),
	},
	Linkable: [2]string{"user_id", "request_log_id"},
	Parent:   "user",
	New:      func() Entity { return &UserRequestLog{} },
})

// Meta implements Entity.
func (l *UserRequestLog) Meta() *Metadata { return UserRequestLogMeta }
