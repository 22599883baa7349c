package staking

import (
	"fmt"
	"math/big"

	"DotPilot/internal/web3"
)

// ParseAmount 把十进制代币数量（如 "1.5"）按精度转换为最小单位。
// 小数位超过 decimals 或结果非正时返回错误。
func ParseAmount(amount string, decimals uint8) (*big.Int, error) {
	planck, err := web3.ParseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	if planck.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return planck, nil
}

// FormatAmount 把最小单位格式化为十进制字符串，去掉末尾的 0。
func FormatAmount(planck *big.Int, decimals uint8) string {
	return web3.FormatUnits(planck, decimals)
}
