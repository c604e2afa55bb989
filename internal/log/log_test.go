package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	original := GetLogger().GetLevel()
	defer GetLogger().SetLevel(original)

	SetLevel("debug")
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())

	SetLevel("WARN")
	assert.Equal(t, logrus.WarnLevel, GetLogger().GetLevel())

	SetLevel("nonsense")
	assert.Equal(t, logrus.WarnLevel, GetLogger().GetLevel())
}
