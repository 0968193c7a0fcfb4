// Package checkpoint saves and resumes the progress of long crawls.
//
// A crawl started with `rednote crawl --resume` records every note it
// yields. When the crawl is restarted for the same source, the recorded
// URLs seed the iterator so already exported notes are skipped. It tracks:
//   - the crawl source (keyword or profile URL)
//   - every yielded note URL with its title
//   - the number of notes yielded so far
//
// Checkpoints live under the application data directory:
//   - Linux: ~/.local/share/rednote/checkpoints/
//   - macOS: ~/Library/Application Support/rednote/checkpoints/
//   - Windows: %APPDATA%/rednote/checkpoints/
//
// Files are written atomically and carry a version number.
package checkpoint
