package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const collectionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "text"],
    "properties": {
      "id": {"type": "integer"},
      "text": {"type": "string"},
      "completed": {"type": "boolean"},
      "priority": {"enum": ["low", "medium", "high"]},
      "dueDate": {"type": "string"},
      "starred": {"type": "boolean"}
    }
  }
}`

var schema = jsonschema.MustCompileString("tasks.schema.json", collectionSchema)

// CorruptError 持久化数据存在但无法解析为任务序列
type CorruptError struct {
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt task collection: %v", e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// EncodeTasks 序列化整个集合；nil 写为 []
func EncodeTasks(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	return json.Marshal(tasks)
}

// DecodeTasks 反序列化并校验集合。空值和 null 视为空集合，其余失败返回 *CorruptError。
func DecodeTasks(data []byte) ([]Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Task{}, nil
	}

	var raw interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &CorruptError{Err: err}
	}
	if err := schema.Validate(raw); err != nil {
		return nil, &CorruptError{Err: err}
	}

	var tasks []Task
	if err := json.Unmarshal(trimmed, &tasks); err != nil {
		return nil, &CorruptError{Err: err}
	}

	seen := make(map[int]struct{}, len(tasks))
	for i := range tasks {
		if _, dup := seen[tasks[i].ID]; dup {
			return nil, &CorruptError{Err: fmt.Errorf("duplicate task id %d", tasks[i].ID)}
		}
		seen[tasks[i].ID] = struct{}{}
		if tasks[i].Priority == "" {
			tasks[i].Priority = PriorityLow
		}
	}
	return tasks, nil
}
