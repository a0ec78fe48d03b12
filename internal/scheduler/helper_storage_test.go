package scheduler_test

import (
	"github.com/rohmanhakim/wayback-robots/internal/pathset"
	"github.com/rohmanhakim/wayback-robots/internal/storage"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/hashutil"
	"github.com/stretchr/testify/mock"
)

type storageMock struct {
	mock.Mock
}

func (s *storageMock) Write(
	outputDir string,
	host string,
	paths pathset.Set[string],
	hashAlgo hashutil.HashAlgo,
) (storage.WriteResult, failure.ClassifiedError) {
	args := s.Called(outputDir, host, paths, hashAlgo)
	res := args.Get(0).(storage.WriteResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return res, err
}
