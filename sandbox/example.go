package sandbox

// ExampleScript is the starter script offered to users. It renders a
// three-node AWS diagram to diagram.png in the working directory.
const ExampleScript = `# Example: simple AWS diagram (Diagrams DSL)
from diagrams import Diagram
from diagrams.aws.compute import EC2
from diagrams.aws.network import ELB
from diagrams.aws.database import RDS

with Diagram("Simple Web Service", filename="diagram", outformat="png", show=False):
    ELB("lb") >> EC2("web") >> RDS("db")
`
