package statemachine

import (
	"fmt"

	"github.com/qafglossary/backend/internal/model"
	"k8s.io/klog/v2"
)

// RunTransition 迁移运行记录的状态迁移
type RunTransition struct {
	From string
	To   string
}

// RunStateMachine 迁移运行状态机
type RunStateMachine struct {
	allowedTransitions map[RunTransition]bool
}

// NewRunStateMachine running -> succeeded/failed，终止态不再变化
func NewRunStateMachine() *RunStateMachine {
	sm := &RunStateMachine{
		allowedTransitions: make(map[RunTransition]bool),
	}
	transitions := []RunTransition{
		{model.RunStatusRunning, model.RunStatusSucceeded},
		{model.RunStatusRunning, model.RunStatusFailed},
	}
	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}
	return sm
}

func (sm *RunStateMachine) CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[RunTransition{From: from, To: to}]
}

// Transition 校验并记录一次状态迁移
func (sm *RunStateMachine) Transition(from, to, runID string) error {
	if !sm.CanTransition(from, to) {
		err := &InvalidStateTransitionError{From: from, To: to}
		klog.V(6).Infof("运行状态迁移被拒绝: runID=%s, %s -> %s", runID, from, to)
		return err
	}
	klog.V(6).Infof("运行状态迁移: runID=%s, %s -> %s", runID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid run state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断状态是否为终止态
func IsTerminal(status string) bool {
	return status == model.RunStatusSucceeded || status == model.RunStatusFailed
}
