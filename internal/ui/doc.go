// Package ui implements the interactive harvest terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a harvest run:
//  1. [PreviewView] : Browse the deduplicated artist list, marking artists that are already processed
//  2. [ConfirmView] : Confirm the run
//  3. [HarvestView] : Follow real-time progress; q stops the run after the current artist
//  4. [ResultView] : Display the run counters
//
// Progress updates flow through a channel from the HarvestEngine, which never blocks on a slow renderer.
package ui
