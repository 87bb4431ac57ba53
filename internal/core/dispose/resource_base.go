package dispose

import (
	"context"

	corelog "dharana-gateway/internal/core/log"
)

// ResourceBase 带名称的资源基类
type ResourceBase struct {
	Dispose
}

// NewResourceBase 创建资源基类，需调用 Initialize 绑定上下文
func NewResourceBase(name string) *ResourceBase {
	r := &ResourceBase{}
	r.name = name
	return r
}

// Initialize 绑定父上下文
func (r *ResourceBase) Initialize(parentCtx context.Context) {
	r.SetCtx(parentCtx, r.onClose)
}

func (r *ResourceBase) onClose() error {
	corelog.Debugf("%s resources cleaned up", r.name)
	return nil
}

func (r *ResourceBase) Name() string {
	return r.name
}

// ServiceBase 服务基类
type ServiceBase struct {
	*ResourceBase
}

// NewService 创建已初始化的服务基类
func NewService(name string, parentCtx context.Context) *ServiceBase {
	s := &ServiceBase{ResourceBase: NewResourceBase(name)}
	s.Initialize(parentCtx)
	return s
}
