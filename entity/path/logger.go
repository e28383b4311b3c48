package path

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "path")
