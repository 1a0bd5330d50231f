// Package checkpoint keeps a small per-group record of past harvest runs.
//
// A checkpoint stores when a group was last harvested, why that run stopped,
// how many posts it stored and the cursor it left behind. It feeds the
// status command and lets watch mode report failures per group; the cursor
// of record is always the one in storage.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/fbharvest/checkpoints/
//   - macOS: ~/Library/Application Support/fbharvest/checkpoints/
//   - Windows: %APPDATA%/fbharvest/checkpoints/
//
// Files are replaced atomically through a temporary file and rename.
package checkpoint
