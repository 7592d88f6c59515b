package models

import "errors"

var (
	// ErrEmptySnapshot 表示采集结果为空，调用方应当跳过本次采集。
	ErrEmptySnapshot = errors.New("empty snapshot")
	// ErrDuplicateTerm 表示同一次采集中出现了重复的词条。
	ErrDuplicateTerm = errors.New("duplicate term in snapshot")
	// ErrIntegrity 表示存储中的状态违反了不变量，例如一个词条存在多个开启的会话。
	ErrIntegrity = errors.New("data integrity violation")
	// ErrStaleTick 表示采集时间不晚于上一次已提交的采集。
	ErrStaleTick = errors.New("tick time is not after the last committed tick")
	// ErrInvalidQuery 表示查询参数不合法。
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound 表示请求的记录不存在。
	ErrNotFound = errors.New("not found")
)
