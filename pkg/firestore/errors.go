package firestore

import (
	"errors"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsNotFound reports whether err is Firestore's missing-document status.
func IsNotFound(err error) bool {
	return grpcCode(err) == codes.NotFound
}

// IsAlreadyExists reports whether a Create hit an existing document.
func IsAlreadyExists(err error) bool {
	return grpcCode(err) == codes.AlreadyExists
}

// IsDone reports the end of a document or collection iterator.
func IsDone(err error) bool {
	return errors.Is(err, iterator.Done)
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(interface{ GRPCStatus() *status.Status }); ok {
			return s.GRPCStatus().Code()
		}
	}
	return codes.Unknown
}
