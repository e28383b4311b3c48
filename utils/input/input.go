package input

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// 从MongoDB读取场景的超时时间
const fetchTimeout = 30 * time.Second

var ErrSceneNotFound = errors.New("scene not found")

// Init 加载场景数据
// 功能：根据配置决定场景来源
// 参数：c-配置对象
// 返回：场景配置
// 算法说明：
// 1. 未配置MongoDB：直接使用配置文件中的scene
// 2. 配置了MongoDB：按scenario.name在集合中查找场景文档，整体替换配置文件中的scene
// 3. 替换后的场景重新执行结构检查
func Init(c config.Config) (config.Scene, error) {
	if c.Input.URI == "" {
		log.Infof("use scene from config file")
		return c.Scene, nil
	}
	client := mongoutil.NewClient(c.Input.URI)
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	scene, err := fetch(ctx, mongoutil.GetMongoColl(client, c.Input.Scenario), c.Input.Scenario.Name)
	if err != nil {
		return config.Scene{}, err
	}
	c.Scene = scene
	if err := c.Validate(); err != nil {
		return config.Scene{}, fmt.Errorf("scene %s from %s.%s: %w",
			c.Input.Scenario.Name, c.Input.Scenario.DB, c.Input.Scenario.Col, err)
	}
	return scene, nil
}

// fetch 从集合中读取指定名称的场景文档
func fetch(ctx context.Context, coll *mongo.Collection, name string) (config.Scene, error) {
	log.Infof("start fetching scene %s from %s", name, coll.Name())
	var scene config.Scene
	err := coll.FindOne(ctx, bson.M{"name": name}).Decode(&scene)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return scene, fmt.Errorf("%w: %s in %s", ErrSceneNotFound, name, coll.Name())
	}
	if err != nil {
		return scene, fmt.Errorf("fetch scene %s: %w", name, err)
	}
	log.Infof("finish fetching scene %s: %d signals, %d paths, %d crosswalks",
		name, len(scene.Signals), len(scene.Paths), len(scene.Crosswalks))
	return scene, nil
}
