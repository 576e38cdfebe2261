package webhook

// Event is one recorder notification as delivered to the webhook endpoint.
// Only the fields the pipeline cares about are decoded; anything else in the
// payload is ignored.
type Event struct {
	Action string    `json:"action"`
	Data   EventData `json:"data"`
}

type EventData struct {
	VOD VODInfo `json:"vod"`
}

// VODInfo carries the recorder's view of where the finished file lives.
// Paths are as seen by the recorder host and may need a prefix rewrite
// before they resolve locally.
type VODInfo struct {
	PathDownloaded string `json:"path_downloaded_vod"`
	PathPlaylist   string `json:"path_playlist"`
	Basename       string `json:"basename"`
}

// ActionEndDownload is the recorder action that signals a finished VOD
// download; all other actions are ignored by the resolver.
const ActionEndDownload = "end_download"
