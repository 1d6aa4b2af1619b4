// Command trainstats inspects, merges and serves the statistics of
// distributed training jobs.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
