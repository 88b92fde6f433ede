//go:build !consul

package store

import "errors"

func openConsul(addr string) (MissionStore, error) {
	return nil, errors.New("consul store requires building with -tags consul")
}
