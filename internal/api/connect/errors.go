package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/account"
	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/app/library"
	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/infra/gotrue"
)

var errorCodes = []struct {
	err  error
	code connect.Code
}{
	{account.ErrNotSignedIn, connect.CodeUnauthenticated},
	{library.ErrSignInRequired, connect.CodeUnauthenticated},
	{gotrue.ErrInvalidCredentials, connect.CodeUnauthenticated},
	{gotrue.ErrInvalidToken, connect.CodeUnauthenticated},
	{library.ErrNotOwner, connect.CodePermissionDenied},
	{catalog.ErrNotFound, connect.CodeNotFound},
	{catalog.ErrInvalidInput, connect.CodeInvalidArgument},
	{library.ErrNothingPlayable, connect.CodeFailedPrecondition},
	{playback.ErrNoWidget, connect.CodeFailedPrecondition},
	{playback.ErrAdapterClosed, connect.CodeUnavailable},
}

// toConnectError maps application errors to Connect codes.
func toConnectError(err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return connect.NewError(e.code, err)
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}
