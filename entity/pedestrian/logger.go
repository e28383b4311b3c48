package pedestrian

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "pedestrian")
