package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// CLI level messages (info)
		"Output saved to %s":             "出力を %s に保存しました",
		"Contact sheet saved to %s":      "コンタクトシートを %s に保存しました",
		"Summary saved to %s":            "サマリーを %s に保存しました",
		"Dumping frames to %s":           "フレームを %s に書き出します",
		"Started %.3f s into the stream": "ストリームの %.3f 秒から開始しました",
		"Interrupted, shutting down...":  "中断されました。シャットダウン中...",
		"ffmpeg found at %s":             "ffmpeg を %s に検出しました",

		// Loader
		"Sampled %d frames at %dx%d (%d dropped, %d padded) in %d ms": "%d フレームを %dx%d で抽出しました (破棄 %d, 補完 %d) %d ms",

		// Session (sampler component)
		"Opened stream %d (%s): %dx%d, %d frames, duration %d at %d/%d": "ストリーム %d (%s) を開きました: %dx%d, %d フレーム, 長さ %d (%d/%d)",
		"Demuxer exhausted after %d frames, decoder flushed":            "%d フレームでデマクサーが終端に達し、デコーダーをフラッシュしました",
		"Seeked to %d":                                                  "%d へシークしました",
		"Skipped %d frames to reach %d (%.3fs)":                         "%d フレームを読み飛ばして %d (%.3f秒) に到達しました",

		// Samplers
		"Sampling %d frames, native %.3f fps, cap %.3f fps, ratio %.3f": "%d フレームを抽出します。元 %.3f fps, 上限 %.3f fps, 比率 %.3f",
		"Seeked to %d for frame %d, now at frame %d":                    "フレーム %[2]d のため %[1]d へシークし、フレーム %[3]d に到達しました",
		"Frame %d is past the last frame %d":                            "フレーム %d は最終フレーム %d より後ろです",

		// Backend selection
		"Selected %s backend for %s": "%[2]s に %[1]s バックエンドを選択しました",

		// Contact sheet
		"Rendering %d tiles in %d columns, sheet %dx%d": "%d タイルを %d カラムで描画中、シート %dx%d",

		// HTTP server
		"Listening on %s":      "%s で待ち受けています",
		"Shutting down":        "シャットダウン中",
		"%s %s %d in %d ms":    "%s %s %d (%d ms)",
		"Request rejected: %s": "リクエストを拒否しました: %s",

		// Warnings
		"Could not open video, returning %d blank frames: %s":           "動画を開けませんでした。空の %d フレームを返します: %s",
		"No frames decoded, %d frames zero-filled":                      "デコードできたフレームがないため %d フレームをゼロで埋めました",
		"Ran out of frames after %d of %d, looping":                     "%d / %d フレームで終端に達したため先頭から繰り返します",
		"Seek for frame %d landed on frame %d, decoding from the start": "フレーム %d へのシークがフレーム %d に着地したため、先頭からデコードします",
		"ffmpeg not found, H.264 decoding is unavailable":               "ffmpeg が見つからないため H.264 はデコードできません",
		"Failed to save frame %d of %s: %s":                             "%[2]s のフレーム %[1]d を保存できませんでした: %[3]s",
		"Failed to save stats of %s: %s":                                "%s の統計を保存できませんでした: %s",

		// Errors
		"Failed to open stream: %s": "ストリームを開けませんでした: %s",
		"Sampling failed: %s":       "抽出に失敗しました: %s",
		"Request failed: %s":        "リクエストが失敗しました: %s",
	})
}
