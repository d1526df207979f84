package infra

import "context"

type UserClientInterface interface {
	GetUserById(ctx context.Context, id string) (*UserInfo, error)
}

var _ UserClientInterface = (*UserClient)(nil)
