package main

import (
	"os"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/syncservice"
)

func main() {
	if err := syncservice.Run(); err != nil {
		os.Exit(1)
	}
}
