package user

import "github.com/trezcool/jarida/core"

// MakePasswordResetToken returns the uid & token that RequestPasswordReset would email to usr.
// Used by tests of the transports.
func MakePasswordResetToken(conf *core.Config, usr User) (uid, token string) {
	gen := tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta}
	return encodeUID(usr), gen.makeToken(usr)
}
