package config

import "time"

// Video Output Constants
const (
	// VideoWidth is the output video width (9:16 aspect ratio)
	VideoWidth = 1080

	// VideoHeight is the output video height (9:16 aspect ratio)
	VideoHeight = 1920

	// VideoCodec is the video encoding codec
	VideoCodec = "libx264"

	// VideoPreset is the ffmpeg encoding speed preset
	VideoPreset = "medium"

	// VideoCRF is the constant rate factor used for the final encode
	VideoCRF = "18"

	// AudioCodec is the audio encoding codec
	AudioCodec = "aac"

	// AudioBitrate is the audio quality bitrate
	AudioBitrate = "192k"

	// SubtitleStyle is the force_style string handed to the subtitles filter
	SubtitleStyle = "FontName=Arial,FontSize=24,PrimaryColour=&HFFFFFF,OutlineColour=&H000000,Outline=2,BorderStyle=3,Alignment=2,MarginV=50"
)

// Workspace resource names (prefixed with the run ID when staged)
const (
	InputVideoName = "input.mp4"
	AudioName      = "audio.mp3"
	SubtitlesName  = "subtitles.srt"
	OutputName     = "output.mp4"
)

// Progress boundaries on the 0-100 scale reported for a run
const (
	ProgressAssetSelected  = 10
	ProgressVoiceDone      = 30
	ProgressDurationProbed = 35
	ProgressSubtitlesDone  = 40
	ProgressStaged         = 50
	ProgressEncoded        = 95
	ProgressOutputRead     = 99
	ProgressComplete       = 100
)

// Timeouts applied to external collaborators
const (
	// DefaultVoiceTimeout bounds one text-to-speech request
	DefaultVoiceTimeout = 2 * time.Minute

	// DefaultProbeTimeout bounds the ffprobe duration lookup
	DefaultProbeTimeout = 30 * time.Second

	// DefaultEncodeTimeout bounds one ffmpeg execution
	DefaultEncodeTimeout = 10 * time.Minute

	// CleanupTimeout bounds workspace release after a run
	CleanupTimeout = 30 * time.Second
)

// Voice settings sent with every synthesis request
const (
	VoiceStability       = 0.5
	VoiceSimilarityBoost = 0.5
)

// Run bookkeeping
const (
	// MaxRunLogs is the number of log entries kept per run
	MaxRunLogs = 50

	// DefaultRunRetention is how long finished runs stay queryable
	DefaultRunRetention = 30 * time.Minute

	// JanitorSchedule is the cron spec for evicting finished runs
	JanitorSchedule = "@every 5m"
)

// YouTube Constants
const (
	// YouTubeCategoryID for Entertainment
	YouTubeCategoryID = "24"

	// YouTubePrivacyStatus sets video visibility
	YouTubePrivacyStatus = "public"

	// MaxTitleLength is the maximum character length for video titles
	MaxTitleLength = 100

	// MaxTitleWords is the maximum number of script words used for a title
	MaxTitleWords = 10
)
