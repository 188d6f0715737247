package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	usr := User{
		ID:    "9a0c1b3e-52f7-4a8e-9d41-0f1c2e6b7a55",
		Name:  "T",
		Email: "t@test.test",
		Role:  RoleStudent,
	}
	_ = usr.SetPassword("pwd")

	validToken := MakeToken(usr)

	// generate an expired token
	dayLate := passwordResetTimeoutDelta + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := MakeToken(usr)
	nowFunc = time.Now // reset

	pwdChanged := usr
	_ = pwdChanged.SetPassword("other-pwd")

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: ErrInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: ErrInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: ErrTokenExpired},
		{name: "password changed", usr: pwdChanged, token: validToken, wantErr: ErrInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "42-abc"}
	id, err := DecodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("DecodeUID() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("DecodeUID() = %q, want %q", id, usr.ID)
	}
	if _, err = DecodeUID("!!!"); err != ErrInvalidToken {
		t.Errorf("DecodeUID() error = %v, want %v", err, ErrInvalidToken)
	}
}
