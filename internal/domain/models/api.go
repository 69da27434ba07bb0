package models

// HistoryRequest filters the completed-episode archive.
type HistoryRequest struct {
	Hours int `query:"hours" default:"24" validate:"gte=1,lte=720"`
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// AnalyticsRequest scopes the aggregate archive queries.
type AnalyticsRequest struct {
	Hours int `query:"hours" default:"24" validate:"gte=1,lte=720"`
}

// RecentRequest bounds the in-memory recent-episode view.
type RecentRequest struct {
	N int `query:"n" default:"20" validate:"gte=1,lte=1000"`
}
