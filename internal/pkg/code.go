package pkg

import (
	cryptoRand "crypto/rand"
	"math/big"
	"strings"
)

// 去掉了容易混淆的 0/O/1/l/I
const tempPasswordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TempPassword 生成住户首次登录用的临时密码
func TempPassword(n int) (string, error) {
	return randFrom(tempPasswordAlphabet, n)
}

func randFrom(alphabet string, n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		x, err := cryptoRand.Int(cryptoRand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[x.Int64()])
	}
	return b.String(), nil
}
