package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"gorm.io/datatypes"
)

// CalculateMD5 computes the MD5 hash of a byte slice.
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// StructToJSON 辅助函数: 将任意结构体序列化为JSON列
func StructToJSON(v interface{}) datatypes.JSON {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(jsonBytes)
}
