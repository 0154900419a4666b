// Package config loads layout files for new sessions.
//
// Layouts are JSON files in a directory, one per layout, named by layout ID:
//
//	{
//	  "name": "Oval",
//	  "width": 6, "height": 4,
//	  "ground":  ["F----7", "|....|", "|....|", "L----J"],
//	  "scenery": ["......", ".t..h.", "......", "......"],
//	  "cars": [{"x": 1, "y": 0, "direction": "east", "design": 2}]
//	}
//
// Rows use the character legend from engine.TrackConfig. The built-in starter
// loop is always listed under engine.StarterLayoutName; a file with that name
// replaces it.
//
// Usage:
//
//	manager, err := config.NewManager("layouts")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg, err := manager.LoadConfig("oval")
package config
