// Package main provides localization for the vidsample CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Output":   "出力先",
		"Sampling": "サンプリング",
		"Decoder":  "デコーダー",
		"Logging":  "ログ",

		// Root command
		"Sample fixed-size RGB frame buffers from videos": "動画から固定サイズのRGBフレームバッファを抽出",
		"YAML configuration file":                         "YAML設定ファイル",

		// Commands
		"Sample frames at a capped frame rate":    "上限フレームレートでフレームを抽出",
		"Sample the frames at the given indices":  "指定したインデックスのフレームを抽出",
		"Describe the video stream":               "動画ストリームの情報を表示",
		"Serve the samplers over HTTP":            "HTTPでサンプラーを提供",
		"List the decoder backends of this build": "このビルドで使えるデコーダーバックエンドを一覧表示",

		// Decoder flags
		"Decoder backend (auto, mp4, astiav)":                                     "デコーダーバックエンド（auto, mp4, astiav）",
		"Scaling kernel (nearest, bilinear, catmullrom)":                          "拡大縮小の補間方式（nearest, bilinear, catmullrom）",
		"Path to the ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)": "ffmpeg実行ファイルのパス（未指定時はFFMPEG_PATH環境変数、次にPATH）",
		"Extra ffmpeg input arguments for H.264 decoding":                         "H.264デコード時にffmpegへ渡す追加の入力引数",

		// Sampling flags
		"Output frame width (0 keeps the native width)":              "出力フレームの幅（0で元の幅）",
		"Output frame height (0 keeps the native height)":            "出力フレームの高さ（0で元の高さ）",
		"Pixel layout (rgb24, bgr24)":                                "画素の並び（rgb24, bgr24）",
		"Number of frames":                                           "フレーム数",
		"Maximum sampling rate in frames per second":                 "最大サンプリングレート（フレーム/秒）",
		"Start at a random keypoint":                                 "ランダムなキーポイントから開始",
		"Seed for the random start (0 seeds from the clock)":         "ランダム開始位置のシード（0で時刻から生成）",
		"Comma separated, strictly increasing frame indices":         "カンマ区切りの狭義単調増加なフレームインデックス",
		"Seek to the first index instead of decoding from the start": "先頭からデコードせず最初のインデックスへシーク",

		// Output flags
		"Raw frame buffer file (- for stdout)":   "生フレームバッファの出力ファイル（-で標準出力）",
		"Write a PNG contact sheet to this file": "PNGのコンタクトシートをこのファイルに出力",
		"Report format (yaml, json)":             "レポート形式（yaml, json）",

		"Write a Markdown summary of the run to this file":    "実行結果のMarkdownサマリーをこのファイルに出力",
		"Save every sampled frame as PNG under this directory": "抽出した全フレームをPNGとしてこのディレクトリに保存",
		"Listen address (default: :8080)":        "待ち受けアドレス（デフォルト: :8080）",

		// Logging flags
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",

		// Runtime messages
		"Error: %s":                    "エラー: %s",
		"A video argument is required": "動画の引数が必要です",
		"Unknown report format %s":     "不明なレポート形式です: %s",

		// Summary headings and labels
		"Sampling Summary": "抽出サマリー",
		"Generated":        "作成日時",
		"Generated by":     "作成:",
		"Warning":          "警告",
		"Results":          "結果",
		"Settings":         "設定",
		"Video Details":    "動画の詳細",
		"Item":             "項目",
		"Value":            "値",
		"Session":          "セッション",
		"Frames Written":   "書き込んだフレーム数",
		"Frames Padded":    "補完したフレーム数",
		"Frames Dropped":   "破棄したフレーム数",
		"Seek Distance":    "シーク位置",
		"Seek Fallback":    "シークのフォールバック",
		"Elapsed":          "処理時間",
		"Buffer Size":      "バッファサイズ",
		"Mode":             "モード",
		"Frame Size":       "フレームサイズ",
		"Frames":           "フレーム数",
		"Pixel Format":     "画素形式",
		"Indices":          "インデックス",
		"Seek":             "シーク",
		"FPS Cap":          "FPS上限",
		"Random Seek":      "ランダムシーク",
		"File":             "ファイル",
		"File Size":        "ファイルサイズ",
		"Backend":          "バックエンド",
		"Codec":            "コーデック",
		"Resolution":       "解像度",
		"Frame Count":      "総フレーム数",
		"Duration":         "長さ",
		"Frame Rate":       "フレームレート",
		"Yes":              "はい",
		"No":               "いいえ",
	})
}
