package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// 服务端 ID 前缀
const (
	PrefixConnectionID = "conn_"
)

// IDGenerator ID 生成器
type IDGenerator interface {
	Generate() (string, error)
}

// UUIDGenerator 基于 UUID v7 的 ID 生成器
// v7 时间有序，冲突概率可忽略，无需跟踪已分配 ID
type UUIDGenerator struct {
	prefix string
}

func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

// NewConnectionIDGenerator 连接 ID 生成器
func NewConnectionIDGenerator() *UUIDGenerator {
	return NewUUIDGenerator(PrefixConnectionID)
}

func (g *UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return g.prefix + id.String(), nil
}

// IsServerID 判断是否为服务端分配的连接 ID 格式
// 客户端声明的对端 ID 不允许使用该格式
func IsServerID(id string) bool {
	return strings.HasPrefix(id, PrefixConnectionID)
}

var _ IDGenerator = (*UUIDGenerator)(nil)
