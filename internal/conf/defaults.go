// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "BrandForge-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/brandforge.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", "Sunday")

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "brandforge.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "brandforge")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "brandforge")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accesskey", "")
	viper.SetDefault("storage.secretkey", "")
	viper.SetDefault("storage.usessl", false)
	viper.SetDefault("storage.archivebucket", "training-archives")
	viper.SetDefault("storage.imagebucket", "generated-images")
	viper.SetDefault("storage.publicbaseurl", "")

	viper.SetDefault("provider.baseurl", "https://api.replicate.com/v1")
	viper.SetDefault("provider.token", "")
	viper.SetDefault("provider.owner", "")
	viper.SetDefault("provider.hardware", "gpu-t4")
	viper.SetDefault("provider.visibility", "private")
	viper.SetDefault("provider.trainerowner", "ostris")
	viper.SetDefault("provider.trainermodel", "flux-dev-lora-trainer")
}
