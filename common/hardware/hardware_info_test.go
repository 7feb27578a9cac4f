// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hardware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/logger"
)

func Test_GetCPUCoreCount(t *testing.T) {
	assert.Greater(t, GetCPUNum(), 0)
}

func Test_GetCPUUsage(t *testing.T) {
	logger.Ctx(context.TODO()).Info("TestGetCPUUsage",
		zap.Float64("CPUUsage", GetCPUUsage()))
}

func TestGetMemory(t *testing.T) {
	total, used, err := GetMemory()
	assert.NoError(t, err)
	assert.Greater(t, total, uint64(0))
	assert.LessOrEqual(t, used, total)
}

func TestGetDiskUsage(t *testing.T) {
	used, total, err := GetDiskUsage("/")
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, used, 0.0)
	assert.GreaterOrEqual(t, total, 0.0)

	used, total, err = GetDiskUsage("/dir_not_exist")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, used)
	assert.Equal(t, 0.0, total)
}
