package viewmodel

import (
	"context"
	"strings"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"go.uber.org/zap"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.User, error)
	Logout() error
	IsLoggedIn() bool
	CurrentUserData() settings.UserData
}

// LoginState is what the login screen shows
type LoginState struct {
	Loading  bool               `json:"loading"`
	LoggedIn bool               `json:"logged_in"`
	User     *settings.UserData `json:"user,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var credentialMessages = map[string]string{
	"username": "Enter a username",
	"password": "Enter a password",
}

type LoginViewModel struct {
	auth  Authenticator
	log   *zap.Logger
	state *Observable[LoginState]
}

func NewLoginViewModel(auth Authenticator, log *zap.Logger) *LoginViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	vm := &LoginViewModel{auth: auth, log: log}
	vm.state = NewObservable(vm.sessionState())
	return vm
}

func (vm *LoginViewModel) State() LoginState {
	return vm.state.Get()
}

func (vm *LoginViewModel) Observe() (<-chan LoginState, func()) {
	return vm.state.Subscribe()
}

// Login checks the credentials locally, then runs the backend login flow
func (vm *LoginViewModel) Login(ctx context.Context, username, password string) (*model.User, error) {
	in := credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateStruct(in, credentialMessages); err != nil {
		vm.fail(err)
		return nil, err
	}

	vm.state.Update(func(s LoginState) LoginState {
		s.Loading = true
		s.Error = ""
		return s
	})

	user, err := vm.auth.Login(ctx, in.Username, in.Password)
	if err != nil {
		vm.fail(err)
		return nil, err
	}

	vm.state.Set(vm.sessionState())
	return user, nil
}

func (vm *LoginViewModel) Logout() error {
	if err := vm.auth.Logout(); err != nil {
		vm.fail(err)
		return err
	}
	vm.state.Set(vm.sessionState())
	return nil
}

func (vm *LoginViewModel) ClearError() {
	vm.state.Update(func(s LoginState) LoginState {
		s.Error = ""
		return s
	})
}

// Refresh re-reads the session, which expires on its own
func (vm *LoginViewModel) Refresh() LoginState {
	return vm.state.Update(func(s LoginState) LoginState {
		next := vm.sessionState()
		next.Error = s.Error
		return next
	})
}

func (vm *LoginViewModel) fail(err error) {
	vm.state.Update(func(s LoginState) LoginState {
		s.Loading = false
		s.Error = Message(err)
		return s
	})
}

func (vm *LoginViewModel) sessionState() LoginState {
	if !vm.auth.IsLoggedIn() {
		return LoginState{}
	}
	user := vm.auth.CurrentUserData()
	return LoginState{LoggedIn: true, User: &user}
}
