package config

// InputPath 指定MongoDB中场景数据来源的配置
// 功能：定义场景数据在MongoDB中的位置
// 说明：Name用于在集合中定位具体的场景文档
type InputPath struct {
	DB   string `yaml:"db"`   // 数据库名
	Col  string `yaml:"col"`  // 集合名
	Name string `yaml:"name"` // 场景名
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Input 指定模拟器输入数据的配置项
// 功能：URI为空时使用配置文件中的scene等字段，否则从MongoDB加载场景并覆盖
type Input struct {
	URI      string    `yaml:"uri,omitempty"`      // MongoDB连接字符串
	Scenario InputPath `yaml:"scenario,omitempty"` // 场景
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start" bson:"start"`       // 开始步数
	Total    int32   `yaml:"total" bson:"total"`       // 总步数
	Interval float64 `yaml:"interval" bson:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step" bson:"step"`
	Seed uint64      `yaml:"seed,omitempty" bson:"seed,omitempty"` // 随机种子
}

// XY 地面平面上的坐标
type XY struct {
	X float64 `yaml:"x" bson:"x"`
	Y float64 `yaml:"y" bson:"y"`
}

// Range 均匀分布的取值范围[Min, Max]
type Range struct {
	Min float64 `yaml:"min" bson:"min"`
	Max float64 `yaml:"max" bson:"max"`
}

// Signal 信号灯配置
type Signal struct {
	ID         int32  `yaml:"id" bson:"id"`
	Name       string `yaml:"name" bson:"name"`
	Position   XY     `yaml:"position" bson:"position"`
	Forward    XY     `yaml:"forward" bson:"forward"`                           // 信号灯朝向
	Pedestrian bool   `yaml:"pedestrian,omitempty" bson:"pedestrian,omitempty"` // 是否为面向行人的信号灯
}

// PhaseAssignment 会话中对单个信号灯的相位指定
type PhaseAssignment struct {
	Signal  int32  `yaml:"signal" bson:"signal"`
	Phase   string `yaml:"phase" bson:"phase"`                         // go|warning|stop
	Flicker bool   `yaml:"flicker,omitempty" bson:"flicker,omitempty"` // 是否闪烁
}

// Session 信号周期中的一个会话
type Session struct {
	Name      string            `yaml:"name" bson:"name"`
	Duration  float64           `yaml:"duration" bson:"duration"` // 持续时间（秒）
	Phases    []PhaseAssignment `yaml:"phases" bson:"phases"`
	Obstacles []string          `yaml:"obstacles,omitempty" bson:"obstacles,omitempty"` // 会话开启期间启用的场景障碍物
}

// Path 车辆路径配置
type Path struct {
	ID           int32   `yaml:"id" bson:"id"`
	Points       []XY    `yaml:"points" bson:"points"`
	StopS        float64 `yaml:"stop_s" bson:"stop_s"`                                   // 停车线位置
	Signal       int32   `yaml:"signal" bson:"signal"`                                   // 绑定的信号灯
	SensorLength float64 `yaml:"sensor_length,omitempty" bson:"sensor_length,omitempty"` // 入口传感器长度
}

// CrosswalkGuard 人行横道所跨越的车辆路径及交点位置
type CrosswalkGuard struct {
	Path int32   `yaml:"path" bson:"path"`
	S    float64 `yaml:"s" bson:"s"`
}

// Crosswalk 人行横道配置
type Crosswalk struct {
	ID         int32            `yaml:"id" bson:"id"`
	Min        XY               `yaml:"min" bson:"min"` // 区域包围盒
	Max        XY               `yaml:"max" bson:"max"`
	Width      float64          `yaml:"width" bson:"width"`             // 过街长度
	LookPoints []XY             `yaml:"look_points" bson:"look_points"` // 左右张望参考点（2个）
	Guards     []CrosswalkGuard `yaml:"guards" bson:"guards"`
}

// Vehicles 车辆池配置
type Vehicles struct {
	Count        int     `yaml:"count" bson:"count"`
	MaxSpeed     float64 `yaml:"max_speed" bson:"max_speed"`
	Accel        float64 `yaml:"accel" bson:"accel"`
	Decel        float64 `yaml:"decel" bson:"decel"`
	Length       float64 `yaml:"length" bson:"length"`
	InitialSpeed float64 `yaml:"initial_speed,omitempty" bson:"initial_speed,omitempty"`
	Lookahead    float64 `yaml:"lookahead,omitempty" bson:"lookahead,omitempty"` // 前车探测距离
}

// PedestrianRoute 行人路线
type PedestrianRoute struct {
	Waypoints []XY `yaml:"waypoints" bson:"waypoints"`
	Loop      bool `yaml:"loop,omitempty" bson:"loop,omitempty"`
	Warp      bool `yaml:"warp,omitempty" bson:"warp,omitempty"` // 循环时是否瞬移回起点
}

// Pedestrians 行人池配置
type Pedestrians struct {
	Count             int               `yaml:"count" bson:"count"`
	Routes            []PedestrianRoute `yaml:"routes" bson:"routes"`
	RiskyRatio        float64           `yaml:"risky_ratio" bson:"risky_ratio"`
	NotConfidentRatio float64           `yaml:"not_confident_ratio" bson:"not_confident_ratio"`
	BaseDelay         Range             `yaml:"base_delay" bson:"base_delay"`
	CommitDelay       Range             `yaml:"commit_delay" bson:"commit_delay"`
	Speed             Range             `yaml:"speed" bson:"speed"`
}

// Tier 拥堵等级参数
type Tier struct {
	MaxConcurrent int     `yaml:"max_concurrent" bson:"max_concurrent"`
	PauseInterval float64 `yaml:"pause_interval" bson:"pause_interval"`
	BurstCount    int     `yaml:"burst_count" bson:"burst_count"`
}

// Congestion 拥堵等级配置，车辆与行人独立
type Congestion struct {
	Vehicle    string          `yaml:"vehicle" bson:"vehicle"`
	Pedestrian string          `yaml:"pedestrian" bson:"pedestrian"`
	Tiers      map[string]Tier `yaml:"tiers,omitempty" bson:"tiers,omitempty"` // 覆盖默认等级表
}

// Scene 场景配置
type Scene struct {
	Holding     XY          `yaml:"holding" bson:"holding"` // 回收实体的场外停放位置
	Signals     []Signal    `yaml:"signals" bson:"signals"`
	Sessions    []Session   `yaml:"sessions" bson:"sessions"`
	Paths       []Path      `yaml:"paths" bson:"paths"`
	Crosswalks  []Crosswalk `yaml:"crosswalks" bson:"crosswalks"`
	Vehicles    Vehicles    `yaml:"vehicles" bson:"vehicles"`
	Pedestrians Pedestrians `yaml:"pedestrians" bson:"pedestrians"`
	Congestion  Congestion  `yaml:"congestion" bson:"congestion"`
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
type Config struct {
	Input   Input   `yaml:"input,omitempty"` // 输入
	Control Control `yaml:"control"`         // 模拟过程控制
	Scene   Scene   `yaml:"scene"`           // 场景
}
