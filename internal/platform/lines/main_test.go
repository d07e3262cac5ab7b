package lines

import (
	"testing"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	log.Init(true)
	goleak.VerifyTestMain(m)
}
