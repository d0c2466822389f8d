// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package errors is the metadata transaction core's error taxonomy. Every
// processor and helper returns one of these sentinels (or wraps one with
// errors.Info for extra detail); nothing here is ever thrown, and a
// processor is expected to translate one of these into a response code
// rather than let it surface as a Go panic.
package errors

import (
	stderrors "errors"

	"github.com/cubefs/cubefs/blobstore/util/errors"
	"google.golang.org/grpc/codes"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrSpaceNotFound     = errors.New("space not found")
	ErrSpaceExisted      = errors.New("space already existed")
	ErrTagNotFound       = errors.New("tag not found")
	ErrTagExisted        = errors.New("tag already existed")
	ErrEdgeNotFound      = errors.New("edge type not found")
	ErrEdgeExisted       = errors.New("edge type already existed")
	ErrIndexNotFound     = errors.New("index not found")
	ErrIndexExisted      = errors.New("index already existed")
	ErrConflict          = errors.New("index conflicts with an existing definition")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExisted       = errors.New("user already existed")
	ErrHostNotFound      = errors.New("host not found")
	ErrGroupNotFound     = errors.New("group not found")
	ErrZoneNotFound      = errors.New("zone not found")
	ErrZoneExisted       = errors.New("zone already existed")
	ErrListenerNotFound  = errors.New("listener not found")
	ErrListenerExisted   = errors.New("listener already existed")

	ErrLeaderChanged     = errors.New("leader changed")
	ErrStoreFailure      = errors.New("store failure")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrNoHosts           = errors.New("no hosts available")
	ErrRPCFailure        = errors.New("rpc failure")
	ErrBlockWriteFailure = errors.New("block writes failed")

	ErrBackupBuildingIndex = errors.New("cannot back up while an index is rebuilding")
	ErrBackupSpaceNotFound = errors.New("backup references a space that no longer exists")
	ErrBackupFailure       = errors.New("backup failed")
)

// GRPCCode maps a taxonomy sentinel to the external RPC status code a
// processor's caller should see. Errors wrapped with errors.Info still
// unwrap correctly because errors.Info preserves the underlying sentinel
// for errors.Is-style comparisons; GRPCCode falls back to Internal for
// anything it doesn't recognize.
func GRPCCode(err error) codes.Code {
	switch {
	case stderrors.Is(err, ErrNotFound), stderrors.Is(err, ErrSpaceNotFound), stderrors.Is(err, ErrTagNotFound),
		stderrors.Is(err, ErrEdgeNotFound), stderrors.Is(err, ErrIndexNotFound), stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrHostNotFound), stderrors.Is(err, ErrGroupNotFound), stderrors.Is(err, ErrZoneNotFound),
		stderrors.Is(err, ErrListenerNotFound), stderrors.Is(err, ErrBackupSpaceNotFound):
		return codes.NotFound
	case stderrors.Is(err, ErrSpaceExisted), stderrors.Is(err, ErrTagExisted), stderrors.Is(err, ErrEdgeExisted),
		stderrors.Is(err, ErrIndexExisted), stderrors.Is(err, ErrUserExisted), stderrors.Is(err, ErrZoneExisted),
		stderrors.Is(err, ErrListenerExisted), stderrors.Is(err, ErrConflict):
		return codes.AlreadyExists
	case stderrors.Is(err, ErrLeaderChanged):
		return codes.Unavailable
	case stderrors.Is(err, ErrInvalidOperation), stderrors.Is(err, ErrInvalidPassword):
		return codes.InvalidArgument
	case stderrors.Is(err, ErrNoHosts), stderrors.Is(err, ErrBackupBuildingIndex):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
