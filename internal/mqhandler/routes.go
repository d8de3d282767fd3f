package mqhandler

import (
	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/pkg/mq"
)

// Route 一个队列及其处理函数
type Route struct {
	Queue      string
	RoutingKey string
	Handler    mq.MessageHandler
}

// Routes worker 和 LocalBus 共用的订阅表
func Routes(recalc *ProjectRecalculateHandler, notify *NotificationHandler) []Route {
	return []Route{
		{Queue: "buildtrack.project.recalculate", RoutingKey: mqcontracts.RoutingProjectRecalculate, Handler: recalc.Handle},
		{Queue: "buildtrack.notify.milestone_reviewed", RoutingKey: mqcontracts.RoutingMilestoneReviewed, Handler: notify.HandleMilestoneReviewed},
		{Queue: "buildtrack.notify.low_stock", RoutingKey: mqcontracts.RoutingInventoryLowStock, Handler: notify.HandleLowStock},
	}
}

// SubscribeAll 把订阅表挂到 LocalBus
func (b *LocalBus) SubscribeAll(routes []Route) {
	for _, r := range routes {
		b.Subscribe(r.RoutingKey, r.Handler)
	}
}
